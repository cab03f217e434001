package http

// ResultKind tags the outcome of a Handler.
type ResultKind uint8

const (
	// KindNone means the handler produced nothing; the chain moves on.
	KindNone ResultKind = iota
	// KindContinue explicitly passes control to the next handler.
	KindContinue
	// KindStop ends the chain; the response was already handled.
	KindStop
	// KindTerminal ends the chain carrying a value for the dispatcher.
	KindTerminal
)

func (kind ResultKind) String() string {
	switch kind {
	case KindContinue:
		return "continue"
	case KindStop:
		return "stop"
	case KindTerminal:
		return "terminal"
	default:
		return "none"
	}
}

// Result is what a middleware or route handler returns.
type Result struct {
	Kind  ResultKind
	Value any
}

var (
	None     = Result{Kind: KindNone}
	Continue = Result{Kind: KindContinue}
	Stop     = Result{Kind: KindStop}
)

// Terminal ends the chain with value. A nil value is the same as None.
func Terminal(value any) Result {
	if value == nil {
		return None
	}
	return Result{Kind: KindTerminal, Value: value}
}

// Ends reports whether the result stops the chain.
func (result Result) Ends() bool {
	return result.Kind == KindStop || result.Kind == KindTerminal
}
