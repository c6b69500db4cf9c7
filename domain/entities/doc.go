// Package entities provides the core domain types shared by every bridge
// operation: the tagged host value that crosses the interpreter boundary
// and the structured error detail carried by condition values.
package entities
