// Copyright (C) 2019-2024 Algorand, Inc.
// This file is part of go-witness
//
// go-witness is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// go-witness is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with go-witness.  If not, see <https://www.gnu.org/licenses/>.

package p2p

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	p2pproto "github.com/libp2p/go-libp2p/core/protocol"
	"github.com/libp2p/go-msgio"

	"github.com/witnessnet/go-witness/protocol"
)

// response status bytes
const (
	statusOK    byte = 0
	statusError byte = 1
)

const requestHandlerTimeout = 30 * time.Second

// ErrEmptyResponse is returned for a response stream carrying no status.
var ErrEmptyResponse = errors.New("empty response")

// RemoteError is an error reported by the peer that served a request.
type RemoteError struct {
	Peer    peer.ID
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("peer %s: %s", e.Peer, e.Message)
}

// RequestHandler answers one request. A returned error is sent back to the
// requester as a RemoteError.
type RequestHandler func(ctx context.Context, from peer.ID, req []byte) ([]byte, error)

// RequestProtocol returns the stream protocol carrying requests with the given tag.
func RequestProtocol(tag protocol.Tag) p2pproto.ID {
	return p2pproto.ID("/witness/req/" + string(tag) + "/1.0.0")
}

// SetRequestHandler serves requests with the given tag. Every stream carries
// one length-prefixed request and one length-prefixed response whose first
// byte is a status.
func (s *Service) SetRequestHandler(tag protocol.Tag, handler RequestHandler) {
	maxSize := int(tag.MaxMessageSize())
	s.host.SetStreamHandler(RequestProtocol(tag), func(stream network.Stream) {
		defer stream.Close()
		from := stream.Conn().RemotePeer()
		stream.SetDeadline(time.Now().Add(requestHandlerTimeout))

		reader := msgio.NewVarintReaderSize(stream, maxSize)
		req, err := reader.ReadMsg()
		if err != nil {
			s.log.Debugf("reading %s request from %s: %v", tag, from, err)
			stream.Reset()
			return
		}

		ctx, cancel := context.WithTimeout(s.ctx, requestHandlerTimeout)
		defer cancel()
		resp, err := handler(ctx, from, req)
		reader.ReleaseMsg(req)

		var out []byte
		if err != nil {
			out = append([]byte{statusError}, err.Error()...)
		} else {
			out = append([]byte{statusOK}, resp...)
		}
		if err := msgio.NewVarintWriter(stream).WriteMsg(out); err != nil {
			s.log.Debugf("writing %s response to %s: %v", tag, from, err)
			stream.Reset()
		}
	})
}

// Request sends req to p over a fresh stream and waits for the response.
func (s *Service) Request(ctx context.Context, p peer.ID, tag protocol.Tag, req []byte) ([]byte, error) {
	stream, err := s.host.NewStream(ctx, p, RequestProtocol(tag))
	if err != nil {
		return nil, err
	}
	defer stream.Close()
	if deadline, ok := ctx.Deadline(); ok {
		stream.SetDeadline(deadline)
	}

	if err := msgio.NewVarintWriter(stream).WriteMsg(req); err != nil {
		stream.Reset()
		return nil, err
	}
	if err := stream.CloseWrite(); err != nil {
		stream.Reset()
		return nil, err
	}

	reader := msgio.NewVarintReaderSize(stream, int(tag.MaxMessageSize())+1)
	msg, err := reader.ReadMsg()
	if err != nil {
		stream.Reset()
		return nil, err
	}
	if len(msg) == 0 {
		return nil, ErrEmptyResponse
	}
	body := append([]byte(nil), msg[1:]...)
	status := msg[0]
	reader.ReleaseMsg(msg)
	if status != statusOK {
		return nil, &RemoteError{Peer: p, Message: string(body)}
	}
	return body, nil
}
