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

	"google.golang.org/grpc"

	"github.com/lindb/zenith/wire"
)

// serviceName and the per-method grpc paths below stand in for what
// protoc would otherwise generate from a .proto service declaration.
const serviceName = "zenith.membership.Membership"

const (
	methodJoin         = "/" + serviceName + "/Join"
	methodJoinValidate = "/" + serviceName + "/JoinValidate"
	methodLeave        = "/" + serviceName + "/Leave"
)

// rpcHandler is implemented by Server; a separate interface keeps the
// hand-written ServiceDesc below decoupled from Server's own fields.
type rpcHandler interface {
	Join(ctx context.Context, req *wire.JoinRequest) (*wire.JoinResponse, error)
	JoinValidate(ctx context.Context, req *wire.JoinValidateRequest) (*wire.JoinValidateResponse, error)
	Leave(ctx context.Context, req *wire.LeaveRequest) (*wire.LeaveResponse, error)
}

func joinHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wire.JoinRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(rpcHandler).Join(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodJoin}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(rpcHandler).Join(ctx, req.(*wire.JoinRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func joinValidateHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wire.JoinValidateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(rpcHandler).JoinValidate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodJoinValidate}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(rpcHandler).JoinValidate(ctx, req.(*wire.JoinValidateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func leaveHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wire.LeaveRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(rpcHandler).Leave(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodLeave}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(rpcHandler).Leave(ctx, req.(*wire.LeaveRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*rpcHandler)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Join", Handler: joinHandler},
		{MethodName: "JoinValidate", Handler: joinValidateHandler},
		{MethodName: "Leave", Handler: leaveHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "transport/membership/service.go",
}
