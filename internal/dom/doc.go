// Package dom appends elements described by Element descriptors to a parsed
// HTML document. Attribute values containing the environment placeholder are
// resolved before the element is attached.
package dom
