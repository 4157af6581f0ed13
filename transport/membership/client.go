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
	"google.golang.org/grpc/credentials/insecure"

	"github.com/lindb/zenith/wire"
)

// Client dials a peer's membership Server and issues Join/JoinValidate/
// Leave calls against it.
type Client struct {
	conn *grpc.ClientConn
}

// Dial opens a grpc connection to addr. The connection is plaintext:
// transport-level mTLS is left to the deployment's network layer.
func Dial(ctx context.Context, addr string) (*Client, error) {
	conn, err := grpc.DialContext(ctx, addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Join sends req to the peer's Join RPC and blocks for its response.
func (c *Client) Join(ctx context.Context, req *wire.JoinRequest) (*wire.JoinResponse, error) {
	resp := new(wire.JoinResponse)
	if err := c.conn.Invoke(ctx, methodJoin, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// JoinAsync issues Join without blocking the caller; callback receives
// the result once the RPC returns, matching the controller's own
// callback-style admission API on the server side.
func (c *Client) JoinAsync(ctx context.Context, req *wire.JoinRequest, callback func(*wire.JoinResponse, error)) {
	go func() {
		resp, err := c.Join(ctx, req)
		callback(resp, err)
	}()
}

// JoinValidate sends req to the peer's JoinValidate RPC and blocks for
// its response.
func (c *Client) JoinValidate(ctx context.Context, req *wire.JoinValidateRequest) (*wire.JoinValidateResponse, error) {
	resp := new(wire.JoinValidateResponse)
	if err := c.conn.Invoke(ctx, methodJoinValidate, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Leave sends req to the peer's Leave RPC and blocks for its response.
func (c *Client) Leave(ctx context.Context, req *wire.LeaveRequest) (*wire.LeaveResponse, error) {
	resp := new(wire.LeaveResponse)
	if err := c.conn.Invoke(ctx, methodLeave, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// LeaveAsync issues Leave without blocking the caller.
func (c *Client) LeaveAsync(ctx context.Context, req *wire.LeaveRequest, callback func(*wire.LeaveResponse, error)) {
	go func() {
		resp, err := c.Leave(ctx, req)
		callback(resp, err)
	}()
}
