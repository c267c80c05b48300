// Copyright 2015 Light Code Labs, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package acme

// Status is an RFC 8555 resource status. String matching is
// case-sensitive; an unrecognized string decodes to StatusUnknown
// rather than failing, since new CAs occasionally add values.
type Status string

const (
	StatusUnknown    Status = "unknown"
	StatusPending    Status = "pending"
	StatusReady      Status = "ready"
	StatusProcessing Status = "processing"
	StatusValid      Status = "valid"
	StatusInvalid    Status = "invalid"
	StatusRevoked    Status = "revoked"
	StatusDeactivated Status = "deactivated"
	StatusExpired    Status = "expired"
	StatusCanceled   Status = "canceled"
)

func parseStatus(s string) Status {
	switch Status(s) {
	case StatusPending, StatusReady, StatusProcessing, StatusValid, StatusInvalid,
		StatusRevoked, StatusDeactivated, StatusExpired, StatusCanceled:
		return Status(s)
	default:
		return StatusUnknown
	}
}

// In reports whether st is one of targets. It is the building block for
// waitForStatus's terminal-state check.
func (st Status) In(targets ...Status) bool {
	for _, t := range targets {
		if st == t {
			return true
		}
	}
	return false
}

func (st Status) String() string {
	return string(st)
}
