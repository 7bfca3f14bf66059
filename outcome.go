package strand

// Outcome holds the settled result of one unit of asynchronous work:
// either a value or an error, never both meaningfully. Outcomes are
// produced by [Task.Result], drained from a [Group] via [Group.Next] or
// [Group.Results], and peeked from a [Bridge] via [Bridge.Outcome].
type Outcome[T any] struct {
	Value T
	Err   error
}

// Ok returns an Outcome carrying a value.
func Ok[T any](v T) Outcome[T] {
	return Outcome[T]{Value: v}
}

// Fail returns an Outcome carrying an error.
func Fail[T any](err error) Outcome[T] {
	return Outcome[T]{Err: err}
}

// Succeeded reports whether the outcome carries a value.
func (o Outcome[T]) Succeeded() bool {
	return o.Err == nil
}

// Unpack splits the outcome into its (value, error) pair, matching the
// shape of an ordinary Go call so callers can re-enter normal error
// handling from pattern-matching code.
func (o Outcome[T]) Unpack() (T, error) {
	return o.Value, o.Err
}
