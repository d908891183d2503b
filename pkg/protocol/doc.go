// Package protocol defines the JSON wire frames exchanged over a
// persistent gateway connection.
//
// Every frame carries a "type" discriminator. Inbound frames form a
// closed set decoded through an explicit type switch (no reflection);
// outbound frames are built through constructor helpers so that every
// error field is guaranteed to be a plain string on the wire.
package protocol
