// Package session groups tasks and agents into sessions.
//
// A Session queues tasks, announces each one with a NewTask event and runs them on
// registered agents one at a time through a commandqueue lane. Terminal tasks can be
// appended to a JSONL Archive, one file per session.
package session
