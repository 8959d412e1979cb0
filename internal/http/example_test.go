package http_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	httpserver "github.com/fyrsmithlabs/servedeck/internal/http"

	"github.com/fyrsmithlabs/servedeck/internal/engine"
	"github.com/fyrsmithlabs/servedeck/internal/logging"
	"github.com/fyrsmithlabs/servedeck/internal/transport"
)

// ExampleServer demonstrates how to create and start the HTTP server.
func ExampleServer() {
	bus := transport.NewBus(nil)
	eng, err := engine.New(engine.Options{Transport: bus.Host()})
	if err != nil {
		panic(err)
	}

	server, err := httpserver.NewServer(eng, logging.NewNop(), &httpserver.Config{
		Host:            "127.0.0.1",
		Port:            0,
		ShutdownTimeout: time.Second,
	})
	if err != nil {
		panic(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Start(ctx) }()

	// Give server time to start
	time.Sleep(100 * time.Millisecond)
	cancel()

	if err := <-done; errors.Is(err, http.ErrServerClosed) {
		fmt.Println("Server started and stopped successfully")
	}
	// Output: Server started and stopped successfully
}
