// Package errors provides the structured errors reported by statelift.
//
// Every error carries a stable code (e.g. "SL001") registered with a
// category, a short message and a longer detail. Callers attach a hint with
// WithSuggestion and the failing value with WithDetail:
//
//	err := errors.New("SL001").
//	    WithDetail(`built-in object "time.Time" detected at key "createdAt"`).
//	    WithSuggestion("store the value as a string or disable strict mode")
//
//	fmt.Println(err.Format())
//	// ERROR SL001: Built-in object in strict state
//	//
//	//   built-in object "time.Time" detected at key "createdAt"
//	//
//	//   Hint: store the value as a string or disable strict mode
//
// Errors implement slog.LogValuer, so they log as a group of attributes.
package errors
