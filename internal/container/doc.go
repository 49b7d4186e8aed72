// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package container holds the small concurrency primitives shared by the
// sensor loops and the connection manager.
package container
