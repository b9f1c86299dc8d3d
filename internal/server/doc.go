// Package server provides the HTTP/WebSocket driver that gives the
// engine an external caller: a go-chi router for session and cron job
// CRUD, Server-Sent Events for session event streams, and a
// gorilla/websocket endpoint for interactive generate calls. It exists
// only as a thin transport over internal/sessionmgr and
// internal/cronjob — no engine logic lives here.
package server
