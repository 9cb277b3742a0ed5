// Copyright 2025 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dataset

import "strconv"

// Registry holds the six identifier spaces. Users, items and user-item pairs are
// interned by the loader; dimensions, conditions and situations belong to the
// SituationIndex but share the registry so that train and test loads use one id space.
type Registry struct {
	Users      *Dict
	Items      *Dict
	UserItems  *Dict
	Dimensions *Dict
	Conditions *Dict
	Situations *Dict

	uiUser    []int
	uiItem    []int
	userPairs [][]int
	itemPairs [][]int
}

func NewRegistry() *Registry {
	return &Registry{
		Users:      NewDict(),
		Items:      NewDict(),
		UserItems:  NewDict(),
		Dimensions: NewDict(),
		Conditions: NewDict(),
		Situations: NewDict(),
	}
}

func userItemKey(u, i int) string {
	return strconv.Itoa(u) + "," + strconv.Itoa(i)
}

// UserItem interns the (user, item) pair.
func (r *Registry) UserItem(u, i int) int {
	ui := r.UserItems.Id(userItemKey(u, i))
	if ui == len(r.uiUser) {
		r.uiUser = append(r.uiUser, u)
		r.uiItem = append(r.uiItem, i)
		for len(r.userPairs) <= u {
			r.userPairs = append(r.userPairs, nil)
		}
		for len(r.itemPairs) <= i {
			r.itemPairs = append(r.itemPairs, nil)
		}
		r.userPairs[u] = append(r.userPairs[u], ui)
		r.itemPairs[i] = append(r.itemPairs[i], ui)
	}
	return ui
}

// LookupUserItem returns the id of a registered pair.
func (r *Registry) LookupUserItem(u, i int) (int, bool) {
	return r.UserItems.Get(userItemKey(u, i))
}

// UserOf returns the user of a user-item pair.
func (r *Registry) UserOf(ui int) int {
	return r.uiUser[ui]
}

// ItemOf returns the item of a user-item pair.
func (r *Registry) ItemOf(ui int) int {
	return r.uiItem[ui]
}

// UserPairs returns all user-item pairs of a user.
func (r *Registry) UserPairs(u int) []int {
	if u < 0 || u >= len(r.userPairs) {
		return nil
	}
	return r.userPairs[u]
}

// ItemPairs returns all user-item pairs of an item.
func (r *Registry) ItemPairs(i int) []int {
	if i < 0 || i >= len(r.itemPairs) {
		return nil
	}
	return r.itemPairs[i]
}

func (r *Registry) CountUsers() int {
	return r.Users.Count()
}

func (r *Registry) CountItems() int {
	return r.Items.Count()
}

func (r *Registry) CountUserItems() int {
	return r.UserItems.Count()
}

func (r *Registry) CountDimensions() int {
	return r.Dimensions.Count()
}

func (r *Registry) CountConditions() int {
	return r.Conditions.Count()
}

func (r *Registry) CountSituations() int {
	return r.Situations.Count()
}

func (r *Registry) freeze() {
	r.Users.Freeze()
	r.Items.Freeze()
	r.UserItems.Freeze()
	r.Dimensions.Freeze()
	r.Conditions.Freeze()
	r.Situations.Freeze()
}
