/* SPDX-License-Identifier: MIT
 *
 * Copyright (C) 2017-2025 WireGuard LLC. All Rights Reserved.
 */

package main

import "github.com/luminet/luminet-go/internal/cli"

func main() {
	cli.Execute()
}
