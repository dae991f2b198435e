// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package schema names the tables and columns of the access-control schema so
// that queries built with fmt.Sprintf stay in step with data/migrations.
package schema
