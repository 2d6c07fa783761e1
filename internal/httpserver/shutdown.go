package httpserver

import "time"

// ShutdownTimeout bounds the graceful stop of the HTTP server and of the background
// workers that drain after it.
var ShutdownTimeout = 30 * time.Second
