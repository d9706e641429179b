// Package audit implements asynchronous dispatch of security-relevant
// events (authentication outcomes, session lifecycle, authorization
// denials) to a pluggable sink.
//
// Emission never blocks request handling: the dispatcher buffers events and
// counts drops when the buffer is full. Sinks receive events from a single
// goroutine and need not be concurrency-safe themselves.
package audit
