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

import "context"

// EmailReply00Challenge is the email-reply-00 challenge for S/MIME
// certificates (RFC 8823). The CA splits the token: part 1 arrives in
// a challenge email, part 2 in the challenge document. The S/MIME
// response message itself is assembled by the caller; this type only
// derives the key authorization and triggers validation.
type EmailReply00Challenge struct {
	*Challenge
}

// From returns the address the CA's challenge email is sent from.
func (c *EmailReply00Challenge) From() (string, error) {
	v, err := c.GetJSON()
	if err != nil {
		return "", err
	}
	return v.Get("from").AsString()
}

// TokenPart2 returns the challenge document's half of the token.
func (c *EmailReply00Challenge) TokenPart2() (string, error) {
	return c.Token()
}

// FullKeyAuthorization builds the key authorization over the
// concatenated token, given part 1 from the challenge email.
func (c *EmailReply00Challenge) FullKeyAuthorization(tokenPart1 string) (string, error) {
	part2, err := c.TokenPart2()
	if err != nil {
		return "", err
	}
	return keyAuthorization(c.login.Key(), tokenPart1+part2)
}

// Trigger tells the CA validation may start. Unlike the other types,
// email-reply-00 sends the full key authorization in the response
// body, so part 1 of the token must be supplied.
func (c *EmailReply00Challenge) Trigger(ctx context.Context, tokenPart1 string) error {
	ka, err := c.FullKeyAuthorization(tokenPart1)
	if err != nil {
		return err
	}
	return c.trigger(ctx, NewBuilder().Str("keyAuthorization", ka))
}
