// Package intset 整数 id 集合，存储层以逗号分隔的字符串（如 "5,7,9"）读写
package intset

import (
	"database/sql/driver"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Set 整数集合，零值可直接使用
type Set map[int]struct{}

// New 由若干 id 构造集合
func New(ids ...int) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Parse 解析逗号分隔的字符串，忽略空白项和非数字项
func Parse(raw string) Set {
	s := Set{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			continue
		}
		s[id] = struct{}{}
	}
	return s
}

// Has 是否包含 id
func (s Set) Has(id int) bool {
	_, ok := s[id]
	return ok
}

// HasAny 是否包含 other 中的任意元素
func (s Set) HasAny(other Set) bool {
	for id := range other {
		if s.Has(id) {
			return true
		}
	}
	return false
}

// Add 添加元素
func (s Set) Add(ids ...int) {
	for _, id := range ids {
		s[id] = struct{}{}
	}
}

// Remove 删除元素
func (s Set) Remove(ids ...int) {
	for _, id := range ids {
		delete(s, id)
	}
}

// Union 并集（返回新集合）
func (s Set) Union(other Set) Set {
	out := make(Set, len(s)+len(other))
	for id := range s {
		out[id] = struct{}{}
	}
	for id := range other {
		out[id] = struct{}{}
	}
	return out
}

// Difference 差集 s - other（返回新集合）
func (s Set) Difference(other Set) Set {
	out := make(Set, len(s))
	for id := range s {
		if !other.Has(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// Intersect 交集（返回新集合）
func (s Set) Intersect(other Set) Set {
	out := Set{}
	for id := range s {
		if other.Has(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// Len 元素个数
func (s Set) Len() int {
	return len(s)
}

// Slice 升序切片
func (s Set) Slice() []int {
	out := make([]int, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Equal 两个集合元素是否相同
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if !other.Has(id) {
			return false
		}
	}
	return true
}

// String 升序的逗号分隔形式
func (s Set) String() string {
	ids := s.Slice()
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

// Value 实现 driver.Valuer，写入逗号分隔字符串
func (s Set) Value() (driver.Value, error) {
	return s.String(), nil
}

// Scan 实现 sql.Scanner，NULL 视为空集合
func (s *Set) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = Set{}
	case string:
		*s = Parse(v)
	case []byte:
		*s = Parse(string(v))
	default:
		return fmt.Errorf("intset: cannot scan %T", src)
	}
	return nil
}
