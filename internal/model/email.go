// Package model defines the core domain types for the bill extraction pipeline.
package model

import (
	"strings"
	"time"
)

// RawEmail is one message as delivered by the mailbox collaborator.
// It is immutable input; the pipeline never mutates it.
type RawEmail struct {
	Date      time.Time
	ID        string
	From      string
	Subject   string
	BodyPlain string
	BodyHTML  string
}

// FromName returns the display-name portion of the From header, if any.
func (e RawEmail) FromName() string {
	name, _ := splitFromHeader(e.From)
	return name
}

// FromEmail returns the address portion of the From header.
func (e RawEmail) FromEmail() string {
	_, addr := splitFromHeader(e.From)
	return addr
}

// FromDomain returns the domain of the sender address, lowercased.
func (e RawEmail) FromDomain() string {
	addr := e.FromEmail()
	at := strings.LastIndex(addr, "@")
	if at < 0 || at == len(addr)-1 {
		return ""
	}
	return strings.ToLower(addr[at+1:])
}

// splitFromHeader parses a raw header like `Chase <no-reply@chase.com>`
// into its display name and address. A bare address yields an empty name.
func splitFromHeader(from string) (name, addr string) {
	from = strings.TrimSpace(from)
	open := strings.LastIndex(from, "<")
	end := strings.LastIndex(from, ">")
	if open >= 0 && end > open {
		name = strings.Trim(strings.TrimSpace(from[:open]), `"`)
		addr = strings.TrimSpace(from[open+1 : end])
		return name, addr
	}
	if strings.Contains(from, "@") {
		return "", from
	}
	return from, ""
}
