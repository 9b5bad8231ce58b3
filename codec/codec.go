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

// Package codec is the single place that turns protocol values into
// bytes, for the wire and for storage alike.
package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/ultiledger/go-qba/crypto"
	"github.com/ultiledger/go-qba/message"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	// deterministic encoding so that equal values hash equally
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{MaxArrayElements: 1 << 20}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Encode value to bytes
func Encode(v interface{}) ([]byte, error) {
	b, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cbor encode failed: %v", err)
	}
	return b, nil
}

// Decode bytes into the value pointed to by v
func Decode(b []byte, v interface{}) error {
	if err := decMode.Unmarshal(b, v); err != nil {
		return fmt.Errorf("cbor decode failed: %v", err)
	}
	return nil
}

// Compute sha256 checksum of the encoded value
func SHA256Hash(v interface{}) (string, error) {
	b, err := Encode(v)
	if err != nil {
		return "", err
	}
	return crypto.SHA256Hash(b), nil
}

// Decode bytes to envelope and check its payload
func DecodeEnvelope(b []byte) (*message.Envelope, error) {
	env := &message.Envelope{}
	if err := Decode(b, env); err != nil {
		return nil, err
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	return env, nil
}
