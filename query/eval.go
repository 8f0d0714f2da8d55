// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package query

import "github.com/sbsummer/whistlepig/sentinel"

// Run drains cursor, collecting doc ids in the descending order the cursor
// produces them. limit <= 0 means unlimited; otherwise Run stops once limit
// doc ids have been collected, leaving the cursor positioned at the next
// unread result so callers can page through it.
func Run(cursor Cursor, limit int) ([]uint32, error) {
	var out []uint32
	for cursor.DocID() != sentinel.DocIDNone {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, cursor.DocID())
		if err := cursor.Advance(); err != nil {
			return out, err
		}
	}
	return out, nil
}
