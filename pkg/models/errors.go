/*
 * Copyright 2025 Carver Automation Corporation.
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

package models

import "errors"

// CodeInternal is reported for any error that carries no code of its own.
const CodeInternal = "internal_error"

// CodedError is a sentinel whose message is a short machine-readable code
// safe to return to callers.
type CodedError struct {
	code string
}

func NewCodedError(code string) *CodedError {
	return &CodedError{code: code}
}

func (e *CodedError) Error() string { return e.code }

func (e *CodedError) Code() string { return e.code }

// ErrorCode returns the code of the first coded error in err's chain, or
// CodeInternal when there is none.
func ErrorCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		return coded.Code()
	}

	return CodeInternal
}
