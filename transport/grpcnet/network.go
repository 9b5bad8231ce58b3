// Copyright 2019 The go-ultiledger Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package grpcnet runs every player behind its own gRPC endpoint.
// Envelopes are CBOR encoded and sent with one unary call each;
// calls from one sender are issued one after another, which keeps
// every link in FIFO order.
package grpcnet

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/ultiledger/go-qba/future"
	"github.com/ultiledger/go-qba/log"
	"github.com/ultiledger/go-qba/message"
	"github.com/ultiledger/go-qba/transport"
)

// Endpoint is where one player listens.
type Endpoint struct {
	Listener net.Listener
	// Dial connects to Listener; nil dials its address over TCP.
	Dial func(ctx context.Context, addr string) (net.Conn, error)
}

type endpoint struct {
	id       message.PlayerID
	server   *grpc.Server
	inbox    *transport.Mailbox
	deliver  chan *future.Deliver
	target   string
	dial     func(ctx context.Context, addr string) (net.Conn, error)
	stopChan chan struct{}
}

type Network struct {
	mu        sync.Mutex
	endpoints map[message.PlayerID]*endpoint
	conns     map[message.PlayerID]*grpc.ClientConn
	closed    bool
	wg        sync.WaitGroup
}

// New starts one gRPC server per endpoint.
func New(endpoints map[message.PlayerID]Endpoint) (*Network, error) {
	n := &Network{
		endpoints: make(map[message.PlayerID]*endpoint),
		conns:     make(map[message.PlayerID]*grpc.ClientConn),
	}
	for id, e := range endpoints {
		if e.Listener == nil {
			n.Close()
			return nil, fmt.Errorf("listener of %s is nil", id)
		}
		ep := &endpoint{
			id:       id,
			server:   grpc.NewServer(),
			inbox:    transport.NewMailbox(),
			deliver:  make(chan *future.Deliver),
			target:   e.Listener.Addr().String(),
			dial:     e.Dial,
			stopChan: make(chan struct{}),
		}
		srv, err := NewPlayerServer(&ServerContext{ID: id, DeliverFuture: ep.deliver})
		if err != nil {
			n.Close()
			return nil, err
		}
		ep.server.RegisterService(&serviceDesc, srv)
		n.endpoints[id] = ep

		n.wg.Add(2)
		go func(lis net.Listener) {
			defer n.wg.Done()
			if err := ep.server.Serve(lis); err != nil {
				log.Warnw("grpc endpoint stopped", "player", ep.id, "err", err)
			}
		}(e.Listener)
		go n.loop(ep)
	}
	return n, nil
}

// Listen opens TCP endpoints on host, the commander at basePort and
// lieutenant i at basePort+1+i.
func Listen(host string, basePort int, lieutenants int) (*Network, error) {
	endpoints := make(map[message.PlayerID]Endpoint)
	ids := []message.PlayerID{message.CommanderID}
	for i := 0; i < lieutenants; i++ {
		ids = append(ids, message.PlayerID(i))
	}
	for _, id := range ids {
		addr := net.JoinHostPort(host, strconv.Itoa(basePort+1+int(id)))
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			for _, e := range endpoints {
				e.Listener.Close()
			}
			return nil, fmt.Errorf("listen on %s failed: %v", addr, err)
		}
		endpoints[id] = Endpoint{Listener: lis}
	}
	return New(endpoints)
}

// loop owns the inbox of one endpoint
func (n *Network) loop(ep *endpoint) {
	defer n.wg.Done()
	for {
		select {
		case f := <-ep.deliver:
			f.Respond(ep.inbox.Put(f.Envelope))
		case <-ep.stopChan:
			return
		}
	}
}

func (n *Network) conn(to message.PlayerID) (*grpc.ClientConn, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil, transport.ErrClosed
	}
	if c, ok := n.conns[to]; ok {
		return c, nil
	}
	ep, ok := n.endpoints[to]
	if !ok {
		return nil, fmt.Errorf("%w: %s", transport.ErrUnknownPlayer, to)
	}
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	}
	if ep.dial != nil {
		opts = append(opts, grpc.WithContextDialer(ep.dial))
	}
	c, err := grpc.NewClient("passthrough:///"+ep.target, opts...)
	if err != nil {
		return nil, fmt.Errorf("create client for %s failed: %v", to, err)
	}
	n.conns[to] = c
	return c, nil
}

// Send returns after the receiving endpoint has queued env.
func (n *Network) Send(ctx context.Context, env *message.Envelope) error {
	c, err := n.conn(env.To)
	if err != nil {
		return err
	}
	ctx = metadata.AppendToOutgoingContext(ctx, fromKey, strconv.Itoa(int(env.From)))
	ack := &Ack{}
	if err := c.Invoke(ctx, deliverMethod, env, ack); err != nil {
		return fmt.Errorf("deliver %s to %s failed: %v", env.Kind, env.To, err)
	}
	if !ack.Accepted {
		return fmt.Errorf("deliver %s to %s was not accepted", env.Kind, env.To)
	}
	return nil
}

func (n *Network) Inbox(id message.PlayerID) (<-chan *message.Envelope, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	ep, ok := n.endpoints[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", transport.ErrUnknownPlayer, id)
	}
	return ep.inbox.C(), nil
}

// Close stops every server and client connection.
func (n *Network) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	for _, c := range n.conns {
		c.Close()
	}
	n.mu.Unlock()
	for _, ep := range n.endpoints {
		ep.server.Stop()
		close(ep.stopChan)
	}
	n.wg.Wait()
	for _, ep := range n.endpoints {
		ep.inbox.Close()
	}
	return nil
}
