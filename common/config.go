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

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	logger "github.com/kthomas/go-logger"
)

var (
	// Log is the configured logger
	Log *logger.Logger

	// ConsumeNATSStreamingSubscriptions when true starts the package-level NATS consumers
	ConsumeNATSStreamingSubscriptions bool

	// DefaultVRFProvider is the name of the VRF provider used by the async fulfiller
	DefaultVRFProvider string

	// DefaultVRFSigningKey is the hex-encoded provider signing key seed, when configured
	DefaultVRFSigningKey *string
)

func init() {
	godotenv.Load()

	requireLogger()
	requireVRFEnvironment()

	ConsumeNATSStreamingSubscriptions = strings.ToLower(os.Getenv("CONSUME_NATS_STREAMING_SUBSCRIPTIONS")) == "true"
}

func requireLogger() {
	lvl := os.Getenv("LOG_LEVEL")
	if lvl == "" {
		lvl = "INFO"
	}

	var endpoint *string
	if os.Getenv("SYSLOG_ENDPOINT") != "" {
		endpt := os.Getenv("SYSLOG_ENDPOINT")
		endpoint = &endpt
	}

	Log = logger.NewLogger("council", lvl, endpoint)
}

func requireVRFEnvironment() {
	DefaultVRFProvider = os.Getenv("VRF_PROVIDER")
	if DefaultVRFProvider == "" {
		DefaultVRFProvider = "eddsa"
	}

	if os.Getenv("VRF_SIGNING_KEY") != "" {
		key := os.Getenv("VRF_SIGNING_KEY")
		DefaultVRFSigningKey = &key
	}
}
