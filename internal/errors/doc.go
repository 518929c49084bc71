// Package errors provides structured, actionable error messages for the
// cells command.
//
// Each error carries a code, a category, a plain-language explanation and
// optionally a hint and the location in a configuration file:
//   - config (C1xx): cells.json could not be read, parsed or validated
//   - runtime (C2xx): a cell operation failed while running a demo or
//     serving a request
//   - server (C3xx): the HTTP server could not start or stop cleanly
//
// # Usage
//
//	err := errors.New("C101").
//	    WithLocation("cells.json", 4, 17).
//	    WithSuggestion("Check for a missing comma after the previous field")
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR C101: Invalid configuration file
//	//
//	//   cells.json:4:17
//	//
//	//       3 │   "server": {
//	//   →   4 │     "address": ":8080"
//	//         │                 ^
//	//       5 │     "watchBuffer": 64
//	//
//	//   Hint: Check for a missing comma after the previous field
//
// Errors raised by package cell are translated with FromCell.
package errors
