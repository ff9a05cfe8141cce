// Package filter builds SQL WHERE predicates as a typed boolean tree.
//
// Nodes are immutable. Rendering numbers placeholders positionally, wraps
// every OR group in parentheses and never merges a child OR into a parent
// AND, so a scope predicate keeps its grouping no matter what business
// filters are added next to it.
package filter

import (
	"strconv"
	"strings"
)

// Expr is a node of the predicate tree.
type Expr interface {
	render(b *builder, nested bool)
}

type constExpr bool

type compareExpr struct {
	column string
	op     string
	value  any
}

type anyExpr struct {
	column string
	ids    []int64
}

type nullExpr struct {
	column string
	negate bool
}

type andExpr struct{ children []Expr }

type orExpr struct{ children []Expr }

type notExpr struct{ child Expr }

type existsExpr struct {
	query string
	args  []any
}

// True matches every row.
func True() Expr { return constExpr(true) }

// False matches no row.
func False() Expr { return constExpr(false) }

// Eq renders column = $n.
func Eq(column string, value any) Expr { return compareExpr{column: column, op: "=", value: value} }

// Gte renders column >= $n.
func Gte(column string, value any) Expr { return compareExpr{column: column, op: ">=", value: value} }

// Lte renders column <= $n.
func Lte(column string, value any) Expr { return compareExpr{column: column, op: "<=", value: value} }

// Lt renders column < $n.
func Lt(column string, value any) Expr { return compareExpr{column: column, op: "<", value: value} }

// ILike renders column ILIKE $n with pattern passed verbatim.
func ILike(column, pattern string) Expr {
	return compareExpr{column: column, op: "ILIKE", value: pattern}
}

// Contains is a case-insensitive substring match with LIKE wildcards in term
// escaped.
func Contains(column, term string) Expr {
	return ILike(column, "%"+escapeLike(term)+"%")
}

// AnyInt64 renders column = ANY($n). An empty id set matches nothing.
func AnyInt64(column string, ids []int64) Expr {
	if len(ids) == 0 {
		return False()
	}
	cp := make([]int64, len(ids))
	copy(cp, ids)
	return anyExpr{column: column, ids: cp}
}

// IsNull renders column IS NULL.
func IsNull(column string) Expr { return nullExpr{column: column} }

// Exists renders EXISTS (query). Each ? in query is bound, in order, to
// the next value of args.
func Exists(query string, args ...any) Expr { return existsExpr{query: query, args: args} }

// NotNull renders column IS NOT NULL.
func NotNull(column string) Expr { return nullExpr{column: column, negate: true} }

// And conjoins children. TRUE children are dropped and any FALSE child
// collapses the whole node to FALSE.
func And(children ...Expr) Expr {
	kept := make([]Expr, 0, len(children))
	for _, c := range children {
		if c == nil {
			continue
		}
		if v, ok := c.(constExpr); ok {
			if !v {
				return False()
			}
			continue
		}
		kept = append(kept, c)
	}
	switch len(kept) {
	case 0:
		return True()
	case 1:
		return kept[0]
	}
	return andExpr{children: kept}
}

// Or disjoins children. FALSE children are dropped and any TRUE child
// collapses the whole node to TRUE.
func Or(children ...Expr) Expr {
	kept := make([]Expr, 0, len(children))
	for _, c := range children {
		if c == nil {
			continue
		}
		if v, ok := c.(constExpr); ok {
			if v {
				return True()
			}
			continue
		}
		kept = append(kept, c)
	}
	switch len(kept) {
	case 0:
		return False()
	case 1:
		return kept[0]
	}
	return orExpr{children: kept}
}

// Not negates child.
func Not(child Expr) Expr {
	if v, ok := child.(constExpr); ok {
		return constExpr(!v)
	}
	if n, ok := child.(notExpr); ok {
		return n.child
	}
	return notExpr{child: child}
}

// IsTrue reports whether e is the constant TRUE.
func IsTrue(e Expr) bool {
	v, ok := e.(constExpr)
	return ok && bool(v)
}

// IsFalse reports whether e is the constant FALSE.
func IsFalse(e Expr) bool {
	v, ok := e.(constExpr)
	return ok && !bool(v)
}

// Where renders e with placeholders starting at $1.
func Where(e Expr) (string, []any) {
	return WhereFrom(e, nil)
}

// WhereFrom renders e continuing the numbering after args, returning the
// fragment and the extended argument list.
func WhereFrom(e Expr, args []any) (string, []any) {
	b := &builder{args: args}
	if e == nil {
		e = True()
	}
	e.render(b, false)
	return b.sb.String(), b.args
}

// Placeholder appends value to args and returns its $n marker.
func Placeholder(args []any, value any) (string, []any) {
	args = append(args, value)
	return "$" + strconv.Itoa(len(args)), args
}

type builder struct {
	sb   strings.Builder
	args []any
}

func (b *builder) bind(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func (c constExpr) render(b *builder, _ bool) {
	if c {
		b.sb.WriteString("TRUE")
		return
	}
	b.sb.WriteString("FALSE")
}

func (c compareExpr) render(b *builder, _ bool) {
	b.sb.WriteString(c.column)
	b.sb.WriteByte(' ')
	b.sb.WriteString(c.op)
	b.sb.WriteByte(' ')
	b.sb.WriteString(b.bind(c.value))
}

func (a anyExpr) render(b *builder, _ bool) {
	b.sb.WriteString(a.column)
	b.sb.WriteString(" = ANY(")
	b.sb.WriteString(b.bind(a.ids))
	b.sb.WriteByte(')')
}

func (n nullExpr) render(b *builder, _ bool) {
	b.sb.WriteString(n.column)
	if n.negate {
		b.sb.WriteString(" IS NOT NULL")
		return
	}
	b.sb.WriteString(" IS NULL")
}

func (a andExpr) render(b *builder, nested bool) {
	if nested {
		b.sb.WriteByte('(')
	}
	for i, c := range a.children {
		if i > 0 {
			b.sb.WriteString(" AND ")
		}
		c.render(b, true)
	}
	if nested {
		b.sb.WriteByte(')')
	}
}

// OR groups are parenthesised at every depth, top level included.
func (o orExpr) render(b *builder, _ bool) {
	b.sb.WriteByte('(')
	for i, c := range o.children {
		if i > 0 {
			b.sb.WriteString(" OR ")
		}
		c.render(b, true)
	}
	b.sb.WriteByte(')')
}

func (e existsExpr) render(b *builder, _ bool) {
	b.sb.WriteString("EXISTS (")
	next := 0
	for _, r := range e.query {
		if r == '?' && next < len(e.args) {
			b.sb.WriteString(b.bind(e.args[next]))
			next++
			continue
		}
		b.sb.WriteRune(r)
	}
	b.sb.WriteByte(')')
}

func (n notExpr) render(b *builder, _ bool) {
	b.sb.WriteString("NOT (")
	n.child.render(b, false)
	b.sb.WriteByte(')')
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
