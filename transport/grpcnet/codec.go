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
	"google.golang.org/grpc/encoding"

	"github.com/ultiledger/go-qba/codec"
)

// codecName is the content subtype every call of this package uses.
const codecName = "cbor"

// cborCodec lets gRPC carry plain Go structs without generated code.
type cborCodec struct{}

func (cborCodec) Marshal(v interface{}) ([]byte, error) {
	return codec.Encode(v)
}

func (cborCodec) Unmarshal(data []byte, v interface{}) error {
	return codec.Decode(data, v)
}

func (cborCodec) Name() string {
	return codecName
}

func init() {
	encoding.RegisterCodec(cborCodec{})
}
