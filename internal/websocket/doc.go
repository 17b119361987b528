// Package websocket serves interactive series sessions over WebSocket.
//
// A client connects to /ws/datasets/{dataset} and sends selection messages.
// Each selection runs the series pipeline once and is answered with a
// "series" message carrying the same document as the HTTP series endpoint,
// or an "error" message carrying an RFC 7807 problem. Messages on one
// connection are handled in the order they arrive.
//
// The write pump pings the peer every PingPeriod; a peer that does not
// answer within PongWait is disconnected.
package websocket
