package term

import (
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// Parse reads exactly one formula in s-expression syntax:
//
//	true false name
//	(not f) (and f...) (or f...) (=> f g...) (xor f g...) (= f g...)
//	(ite c t e) (! f :named name)
func (c *Context) Parse(src string) (Formula, error) {
	fs, err := c.ParseAll(src)
	if err != nil {
		return Null, err
	}
	if len(fs) != 1 {
		return Null, errors.Errorf("expected one formula, found %d", len(fs))
	}
	return fs[0], nil
}

// ParseAll reads a sequence of formulas.
func (c *Context) ParseAll(src string) ([]Formula, error) {
	p := parser{c: c, toks: tokenize(src)}
	var result []Formula
	for !p.done() {
		f, err := p.expr()
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	return result, nil
}

type token struct {
	text string
	pos  int
}

func tokenize(src string) []token {
	var toks []token
	for i := 0; i < len(src); {
		r := rune(src[i])
		switch {
		case r == ';':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case unicode.IsSpace(r):
			i++
		case r == '(' || r == ')':
			toks = append(toks, token{text: string(r), pos: i})
			i++
		default:
			start := i
			for i < len(src) && !strings.ContainsRune("() \t\r\n;", rune(src[i])) {
				i++
			}
			toks = append(toks, token{text: src[start:i], pos: start})
		}
	}
	return toks
}

type parser struct {
	c    *Context
	toks []token
	next int
}

func (p *parser) done() bool {
	return p.next >= len(p.toks)
}

func (p *parser) take() (token, error) {
	if p.done() {
		return token{}, errors.New("unexpected end of input")
	}
	t := p.toks[p.next]
	p.next++
	return t, nil
}

func (p *parser) expr() (Formula, error) {
	t, err := p.take()
	if err != nil {
		return Null, err
	}
	switch t.text {
	case ")":
		return Null, errors.Errorf("unexpected ')' at offset %d", t.pos)
	case "(":
		return p.compound(t)
	case "true":
		return p.c.True(), nil
	case "false":
		return p.c.False(), nil
	}
	return p.c.Var(t.text), nil
}

func (p *parser) compound(open token) (Formula, error) {
	op, err := p.take()
	if err != nil {
		return Null, err
	}

	if op.text == "!" {
		return p.named(open)
	}

	var args []Formula
	for {
		if p.done() {
			return Null, errors.Errorf("unclosed '(' at offset %d", open.pos)
		}
		if p.toks[p.next].text == ")" {
			p.next++
			break
		}
		f, err := p.expr()
		if err != nil {
			return Null, err
		}
		args = append(args, f)
	}

	arity := func(min, max int) error {
		if len(args) < min || (max >= 0 && len(args) > max) {
			return errors.Errorf("wrong number of arguments to %q at offset %d", op.text, op.pos)
		}
		return nil
	}

	switch op.text {
	case "not":
		if err := arity(1, 1); err != nil {
			return Null, err
		}
		return p.c.Not(args[0]), nil
	case "and":
		return p.c.And(args...), nil
	case "or":
		return p.c.Or(args...), nil
	case "=>":
		if err := arity(2, -1); err != nil {
			return Null, err
		}
		// right associative
		f := args[len(args)-1]
		for i := len(args) - 2; i >= 0; i-- {
			f = p.c.Implies(args[i], f)
		}
		return f, nil
	case "xor":
		if err := arity(2, -1); err != nil {
			return Null, err
		}
		f := args[0]
		for _, g := range args[1:] {
			f = p.c.Xor(f, g)
		}
		return f, nil
	case "=":
		if err := arity(2, -1); err != nil {
			return Null, err
		}
		var eqs []Formula
		for i := 1; i < len(args); i++ {
			eqs = append(eqs, p.c.Iff(args[i-1], args[i]))
		}
		return p.c.And(eqs...), nil
	case "ite":
		if err := arity(3, 3); err != nil {
			return Null, err
		}
		return p.c.Ite(args[0], args[1], args[2]), nil
	}
	return Null, errors.Errorf("unknown operator %q at offset %d", op.text, op.pos)
}

func (p *parser) named(open token) (Formula, error) {
	f, err := p.expr()
	if err != nil {
		return Null, err
	}
	attr, err := p.take()
	if err != nil {
		return Null, err
	}
	if attr.text != ":named" {
		return Null, errors.Errorf("unsupported attribute %q at offset %d", attr.text, attr.pos)
	}
	name, err := p.take()
	if err != nil {
		return Null, err
	}
	if name.text == "(" || name.text == ")" {
		return Null, errors.Errorf("expected label name at offset %d", name.pos)
	}
	closing, err := p.take()
	if err != nil {
		return Null, err
	}
	if closing.text != ")" {
		return Null, errors.Errorf("unclosed '(' at offset %d", open.pos)
	}
	return p.c.Label(name.text, f), nil
}
