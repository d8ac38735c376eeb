// Package repository provides the data access adapter over the relational store.
package repository

import (
	"fmt"
	"sort"
)

// Entity describes how a model's GraphQL fields map onto storage columns and
// which relations may be included. Only fields registered here can ever be
// selected, filtered or written.
type Entity struct {
	Name string

	key       string
	fields    map[string]column
	visible   []string
	relations map[string]*relation
}

type column struct {
	name   string
	hidden bool
}

type relation struct {
	association string
	target      *Entity
	ownerKey    string
	targetKey   string
}

type fieldSpec struct {
	field  string
	column string
	hidden bool
}

// mapped declares a field whose column name differs from the field name.
func mapped(field, col string) fieldSpec {
	return fieldSpec{field: field, column: col}
}

// hidden declares a column that may be filtered or written but is never projected.
func hidden(col string) fieldSpec {
	return fieldSpec{field: col, column: col, hidden: true}
}

func same(names ...string) []fieldSpec {
	specs := make([]fieldSpec, len(names))
	for i, n := range names {
		specs[i] = fieldSpec{field: n, column: n}
	}
	return specs
}

func newEntity(name, key string, specs ...[]fieldSpec) *Entity {
	e := &Entity{
		Name:      name,
		key:       key,
		fields:    make(map[string]column),
		relations: make(map[string]*relation),
	}
	for _, group := range specs {
		for _, s := range group {
			e.fields[s.field] = column{name: s.column, hidden: s.hidden}
			if !s.hidden {
				e.visible = append(e.visible, s.field)
			}
		}
	}
	return e
}

func (e *Entity) relate(name, association string, target *Entity, ownerKey, targetKey string) {
	e.relations[name] = &relation{
		association: association,
		target:      target,
		ownerKey:    ownerKey,
		targetKey:   targetKey,
	}
}

// Column resolves a field name to its storage column.
func (e *Entity) Column(field string) (string, error) {
	c, ok := e.fields[field]
	if !ok {
		return "", fmt.Errorf("%w: %s.%s", ErrUnknownField, e.Name, field)
	}
	return c.name, nil
}

// Fields lists the projectable field names.
func (e *Entity) Fields() []string {
	return append([]string(nil), e.visible...)
}

// Relations lists the includable relation names in sorted order.
func (e *Entity) Relations() []string {
	names := make([]string, 0, len(e.relations))
	for name := range e.relations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// columns returns the storage columns to select for a projection. The primary
// key and the owner-side keys of requested includes are always present so the
// store can stitch related rows back onto their owners.
func (e *Entity) columns(p *Projection, includes []Include) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(col string) {
		if !seen[col] {
			seen[col] = true
			out = append(out, col)
		}
	}

	add(e.key)
	if p == nil {
		for _, f := range e.visible {
			add(e.fields[f].name)
		}
	} else {
		for _, f := range p.Fields {
			if c, ok := e.fields[f]; ok && !c.hidden {
				add(c.name)
			}
		}
	}
	for _, inc := range includes {
		rel, ok := e.relations[inc.Relation]
		if !ok || !p.wants(inc.Relation) {
			continue
		}
		add(rel.ownerKey)
	}
	return out
}

var (
	Users = newEntity("User", "user_idx",
		same("user_idx", "user_id", "user_nm", "nick_nm", "email", "user_profile",
			"auth_email_yn", "log_ip", "log_dt", "reg_dt"),
		[]fieldSpec{hidden("user_pw"), hidden("auth_token")},
	)
	Categories = newEntity("Category", "category_idx",
		same("category_idx", "category_nm", "category_icon", "reg_dt"),
	)
	Posts = newEntity("Post", "board_idx",
		[]fieldSpec{mapped("post_idx", "board_idx")},
		same("category_idx", "user_idx", "title", "body", "view_cnt", "reg_dt"),
	)
	Comments = newEntity("Comment", "cmt_idx",
		[]fieldSpec{mapped("post_idx", "board_idx")},
		same("cmt_idx", "user_idx", "text", "reg_dt"),
	)
	Colleges = newEntity("College", "college_idx",
		same("college_idx", "college_nm"),
	)
	Departments = newEntity("Department", "dpt_idx",
		same("dpt_idx", "college_idx", "dpt_nm"),
	)
)

func init() {
	Users.relate("articles", "Articles", Posts, "user_idx", "user_idx")
	Users.relate("comments", "Comments", Comments, "user_idx", "user_idx")
	Categories.relate("posts", "Posts", Posts, "category_idx", "category_idx")
	Posts.relate("category", "Category", Categories, "category_idx", "category_idx")
	Posts.relate("user", "User", Users, "user_idx", "user_idx")
	Posts.relate("comments", "Comments", Comments, "board_idx", "board_idx")
	Comments.relate("commenter", "Commenter", Users, "user_idx", "user_idx")
	Colleges.relate("departments", "Departments", Departments, "college_idx", "college_idx")
}
