// Package serial provides the ordered field encoding used for every database
// element, together with the registry that maps class IDs to decoders.
//
// An element is written as a msgpack array whose first item is its class ID
// followed by exactly the number of fields the element declares. Readers
// check both the class ID and the field count before decoding anything, so
// version skew between writer and reader fails loudly instead of leaving
// fields at their zero values.
//
// Writer and Reader keep the first error they encounter and turn every
// later call into a no-op, in the manner of bufio.Scanner. Callers check
// Err, Bytes or Finish once at the end.
package serial
