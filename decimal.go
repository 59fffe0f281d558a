// Go MySQL Driver - A MySQL-Driver for Go's database/sql package
//
// Copyright 2013 Julien Schmidt. All rights reserved.
// http://www.julienschmidt.com
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package mysql

// Decimal holds a DECIMAL/NEWDECIMAL column value verbatim as the ASCII
// digits the server sent, avoiding the precision loss a float64
// conversion would introduce.
type Decimal string

// String implements fmt.Stringer.
func (d Decimal) String() string {
	return string(d)
}
