// Package jsonrpc defines the JSON-RPC 2.0 message model carried over the
// stdio transport.
//
// A Message is a tagged union of Request, Response and Notification. The kind
// is derived from which fields are present on the wire:
//
//	{"jsonrpc":"2.0","id":1,"method":"tools/list"}             // request
//	{"jsonrpc":"2.0","method":"notifications/initialized"}     // notification
//	{"jsonrpc":"2.0","id":1,"result":{"tools":[]}}             // response
//	{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"..."}}
//
// Decoding validates the envelope, so a Message obtained from json.Unmarshal
// is always structurally well-formed.
package jsonrpc
