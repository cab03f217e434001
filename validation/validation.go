package validation

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

type Violations struct {
	Errors map[string][]error
}

func (violations Violations) MarshalJSON() ([]byte, error) {
	errors := make(map[string][]string)
	for fieldName, fieldErrors := range violations.Errors {
		errors[fieldName] = make([]string, len(fieldErrors))
		for index, fieldError := range fieldErrors {
			errors[fieldName][index] = fieldError.Error()
		}
	}

	return json.Marshal(map[string]map[string][]string{
		"errors": errors,
	})
}

func (violations Violations) IsEmpty() bool {
	return len(violations.Errors) == 0
}

// Messages flattens the violations, ordered by field name.
func (violations Violations) Messages() []string {
	names := make([]string, 0, len(violations.Errors))
	for name := range violations.Errors {
		names = append(names, name)
	}
	slices.Sort(names)

	var messages []string
	for _, name := range names {
		for _, err := range violations.Errors[name] {
			messages = append(messages, err.Error())
		}
	}
	return messages
}

// ValidateMap checks every field named in rules against data. Rules are
// "required", "integer", "between:min,max" and "max:length". Non-required
// rules are skipped for absent or empty values.
func ValidateMap(data map[string]string, rules map[string][]string) Violations {
	violations := Violations{Errors: make(map[string][]error)}

	for attributeName, attributeRules := range rules {
		value, present := data[attributeName]

		var errorCollection []error
		for _, attributeRule := range attributeRules {
			if attributeRule != "required" && (!present || value == "") {
				continue
			}

			if err := validate(attributeRule, attributeName, value); err != nil {
				errorCollection = append(errorCollection, err)
			}
		}

		if len(errorCollection) != 0 {
			violations.Errors[attributeName] = errorCollection
		}
	}

	return violations
}

func validate(rule string, name string, value string) error {
	rule, argument, _ := strings.Cut(rule, ":")

	switch rule {
	case "required":
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s is required", name)
		}
	case "integer":
		if !ValidateInteger(value) {
			return fmt.Errorf("%s must be an integer", name)
		}
	case "between":
		lower, upper, err := bounds(argument)
		if err != nil {
			return fmt.Errorf("invalid validation rule :: between:%s", argument)
		}
		if !ValidateBetween(value, lower, upper) {
			return fmt.Errorf("%s must be between %d and %d", name, lower, upper)
		}
	case "max":
		length, err := strconv.Atoi(argument)
		if err != nil {
			return fmt.Errorf("invalid validation rule :: max:%s", argument)
		}
		if utf8.RuneCountInString(value) > length {
			return fmt.Errorf("%s may not be longer than %d characters", name, length)
		}
	default:
		return fmt.Errorf("invalid validation rule :: %s", rule)
	}

	return nil
}

func bounds(argument string) (int, int, error) {
	lowerText, upperText, found := strings.Cut(argument, ",")
	if !found {
		return 0, 0, fmt.Errorf("missing upper bound")
	}

	lower, err := strconv.Atoi(strings.TrimSpace(lowerText))
	if err != nil {
		return 0, 0, err
	}

	upper, err := strconv.Atoi(strings.TrimSpace(upperText))
	if err != nil {
		return 0, 0, err
	}

	return lower, upper, nil
}

func ValidateInteger(value string) bool {
	_, err := strconv.Atoi(value)
	return err == nil
}

// ValidateBetween reports whether value is an integer within [lower, upper].
func ValidateBetween(value string, lower, upper int) bool {
	valueAsInt, err := strconv.Atoi(value)
	if err != nil {
		return false
	}

	return valueAsInt >= lower && valueAsInt <= upper
}
