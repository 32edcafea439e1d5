// Package model defines the entities synchronised between the reminder
// service and the client session: users, reminders, categories and the
// aggregate statistics the service computes over them.
//
// Wire field names follow the remote service's JSON format. Identifiers are
// opaque strings locally; the service may send them as JSON numbers.
package model
