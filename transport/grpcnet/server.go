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

package grpcnet

import (
	"context"
	"errors"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/ultiledger/go-qba/future"
	"github.com/ultiledger/go-qba/message"
)

const (
	serviceName   = "qba.Transport"
	deliverMethod = "/qba.Transport/Deliver"
	// metadata key carrying the sending player
	fromKey = "from"
)

// Ack is the reply to a delivered envelope.
type Ack struct {
	Accepted bool `cbor:"1,keyasint"`
}

type deliverer interface {
	Deliver(ctx context.Context, env *message.Envelope) (*Ack, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*deliverer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Deliver",
			Handler:    deliverHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "qba/transport",
}

func deliverHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(message.Envelope)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(deliverer).Deliver(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: deliverMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(deliverer).Deliver(ctx, req.(*message.Envelope))
	}
	return interceptor(ctx, in, info, handler)
}

// PlayerServer accepts envelopes for one player. It does not touch
// the player's inbox itself; every envelope is passed as a future
// to the endpoint loop that owns the inbox.
type PlayerServer struct {
	id            message.PlayerID
	deliverFuture chan<- *future.Deliver
}

// ServerContext represents contextual information for running server.
type ServerContext struct {
	ID            message.PlayerID
	DeliverFuture chan *future.Deliver
}

func ValidateServerContext(sc *ServerContext) error {
	if sc == nil {
		return errors.New("server context is nil")
	}
	if sc.DeliverFuture == nil {
		return errors.New("deliver future channel is nil")
	}
	return nil
}

func NewPlayerServer(sc *ServerContext) (*PlayerServer, error) {
	if err := ValidateServerContext(sc); err != nil {
		return nil, err
	}
	return &PlayerServer{id: sc.ID, deliverFuture: sc.DeliverFuture}, nil
}

// Deliver checks that the envelope is addressed to this player and
// comes from the player named in the call metadata, then queues it.
func (s *PlayerServer) Deliver(ctx context.Context, env *message.Envelope) (*Ack, error) {
	resp := &Ack{}
	if err := env.Validate(); err != nil {
		return resp, status.Error(codes.InvalidArgument, err.Error())
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok || len(md.Get(fromKey)) == 0 {
		return resp, status.Error(codes.Unauthenticated, "sender is missing")
	}
	if md.Get(fromKey)[0] != strconv.Itoa(int(env.From)) {
		return resp, status.Error(codes.PermissionDenied, "sender does not match envelope")
	}
	if env.To != s.id {
		return resp, status.Errorf(codes.NotFound, "no player %s here", env.To)
	}

	f := &future.Deliver{Envelope: env}
	f.Init()
	select {
	case s.deliverFuture <- f:
	case <-ctx.Done():
		return resp, status.FromContextError(ctx.Err()).Err()
	}
	if err := f.Wait(ctx); err != nil {
		return resp, status.Error(codes.Unavailable, err.Error())
	}
	resp.Accepted = true
	return resp, nil
}
