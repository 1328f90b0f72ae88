//go:build ignore

// Backend is a simple TCP echo server used for proxy testing.
// Every reply is prefixed with the backend name so the load generator can
// tell which server handled a connection.
//
// Usage:
//
//	go run backend.go -port 9001 -name b1
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"net"
)

func main() {
	port := flag.Int("port", 9001, "port to listen on")
	name := flag.String("name", "", "name reported in replies (default: listen address)")
	flag.Parse()

	addr := fmt.Sprintf(":%d", *port)
	if *name == "" {
		*name = addr
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("listen failed: %v", err)
	}
	log.Printf("starting backend %s on %s", *name, addr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Printf("accept failed: %v", err)
			continue
		}
		go serve(conn, *name)
	}
}

// serve echoes each line back as "<name> <line>" until the client closes.
func serve(conn net.Conn, name string) {
	defer conn.Close()

	log.Printf("connection from=%s", conn.RemoteAddr())

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		if _, err := fmt.Fprintf(conn, "%s %s\n", name, scanner.Text()); err != nil {
			return
		}
	}
}
