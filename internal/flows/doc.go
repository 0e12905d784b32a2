// Package flows holds the orchestration behind each Engine operation.
//
// Every Run* function takes a dependency struct of interfaces and funcs and
// returns a result carrying a Failure kind. The root package builds the
// dependency structs once and maps failure kinds to its exported errors.
//
// Flows keep no state between calls and do no I/O except through their
// dependencies. They must not import the root package.
package flows
