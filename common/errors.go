/*
 * Copyright 2023-2025 Councilnet, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package common

import "fmt"

// Stable numeric codes surfaced on guarded transition failures; external
// callers depend on these values remaining fixed
const (
	ErrInvalidSessionStatus = uint32(6000)
	ErrInvalidVRFProof      = uint32(6001)
	ErrInvalidAgentCount    = uint32(6002)
	ErrSessionNotFound      = uint32(6003)
	ErrDiversityViolated    = uint32(6004)

	ErrUnauthorized    = uint32(6010)
	ErrAlreadyExists   = uint32(6011)
	ErrInvalidArgument = uint32(6012)

	ErrDebateNotActive   = uint32(6100)
	ErrInvalidConfidence = uint32(6101)
	ErrAlreadyVoted      = uint32(6102)
	ErrNoVotes           = uint32(6103)
	ErrVotesNotTallied   = uint32(6104)
	ErrCapacityExceeded  = uint32(6105)
	ErrDebateNotFound    = uint32(6106)
)

// CodedError is a guard failure with its stable code; the record is
// unchanged whenever a transition returns one
type CodedError struct {
	Code    uint32 `json:"code"`
	Message string `json:"message"`
}

// Error returns the message and code of the guard failure
func (e *CodedError) Error() string {
	return fmt.Sprintf("%s (%d)", e.Message, e.Code)
}

// NewCodedError returns a guard failure with the given stable code
func NewCodedError(code uint32, message string) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
	}
}

// NewCodedErrorf returns a guard failure with a formatted message
func NewCodedErrorf(code uint32, format string, args ...interface{}) *CodedError {
	return &CodedError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}
