// Package registry holds the tools, resources and prompts a server exposes
// and answers the reserved tools/*, resources/* and prompts/* methods.
//
// A Registry is built once. Its descriptor set never changes afterwards;
// resource providers may return different data over time, but the families
// a registry serves and the tools it lists are fixed at construction.
//
// Tool-level failures come in two forms. A tool that decides to report a
// failure returns a result with IsError set. Protocol-level failures (unknown
// tool, arguments rejected by the tool's predicate, handler errors) are
// returned as *errors.ApplicationError and travel as error responses.
package registry
