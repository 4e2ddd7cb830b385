// Package link provides the host side of the tagged line protocol spoken by
// the controller firmware over a serial port.
package link

// Every line sent by the firmware is framed as
//
//	<tag>:<payload>\n
//
// where tag is a single ASCII letter naming the payload kind. The host sends
// single-character command codes, optionally followed by a JSON payload and
// without a terminator. There are no request/reply pairs: the host writes
// commands and polls for lines, and a read timeout with nothing queued
// (quiescence) marks the end of a response batch.
//
// Producer: controller firmware
// Consumer: reflash host tools
