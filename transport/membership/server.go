// Licensed to LinDB under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. LinDB licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package membership

import (
	"context"
	"net"

	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	"github.com/lindb/common/pkg/logger"
	"google.golang.org/grpc"

	"github.com/lindb/zenith/cluster/join"
	errorpkg "github.com/lindb/zenith/pkg/errors"
	"github.com/lindb/zenith/wire"
)

var serverLog = logger.GetLogger("Transport", "Membership")

// Server adapts a join.Controller onto the grpc Join/JoinValidate/Leave
// RPCs, recovering handler panics and logging every failed call through
// go-grpc-middleware's chained unary interceptors, the same recovery
// discipline the bulk executors use around task callbacks.
type Server struct {
	grpcServer *grpc.Server
	controller join.Controller
}

// NewServer creates a Server dispatching to controller. Call Serve to
// begin accepting connections.
func NewServer(controller join.Controller) *Server {
	recoveryOpt := grpc_recovery.WithRecoveryHandler(func(p interface{}) error {
		return errorpkg.FromRecover(p)
	})
	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(grpc_middleware.ChainUnaryServer(
			grpc_recovery.UnaryServerInterceptor(recoveryOpt),
			loggingInterceptor,
		)),
	)
	s := &Server{grpcServer: grpcServer, controller: controller}
	grpcServer.RegisterService(&serviceDesc, s)
	return s
}

// Serve blocks accepting connections on lis until the server stops.
func (s *Server) Serve(lis net.Listener) error {
	return s.grpcServer.Serve(lis)
}

// Stop gracefully stops the grpc server, letting in-flight RPCs finish.
func (s *Server) Stop() {
	s.grpcServer.GracefulStop()
}

func loggingInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	resp, err := handler(ctx, req)
	if err != nil {
		serverLog.Error("membership rpc failed", logger.String("method", info.FullMethod), logger.Error(err))
	}
	return resp, err
}

// Join admits a prospective member, blocking until the controller commits
// or fails the join, or the caller's context is cancelled first.
func (s *Server) Join(ctx context.Context, req *wire.JoinRequest) (*wire.JoinResponse, error) {
	done := make(chan error, 1)
	s.controller.HandleJoinRequest(req.Node, func(err error) { done <- err })
	select {
	case err := <-done:
		return &wire.JoinResponse{Error: wire.EncodeError(err)}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// JoinValidate runs the local pre-vote check against req's candidate
// snapshot without mutating anything.
func (s *Server) JoinValidate(_ context.Context, req *wire.JoinValidateRequest) (*wire.JoinValidateResponse, error) {
	err := s.controller.ValidateJoin(req.ClusterStateSnapshot)
	return &wire.JoinValidateResponse{Error: wire.EncodeError(err)}, nil
}

// Leave removes req.Node from cluster state, blocking until the removal
// commits or the caller's context is cancelled first.
func (s *Server) Leave(ctx context.Context, req *wire.LeaveRequest) (*wire.LeaveResponse, error) {
	done := make(chan error, 1)
	s.controller.HandleLeaveRequest(req.Node.ID, func(err error) { done <- err })
	select {
	case err := <-done:
		return &wire.LeaveResponse{Error: wire.EncodeError(err)}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
