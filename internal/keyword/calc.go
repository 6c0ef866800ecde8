package keyword

import (
	"fmt"
	"math"
	"regexp"
	"strconv"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

// A number directly followed by % is a percentage when what comes next
// cannot continue a modulo expression.
var percentLiteral = regexp.MustCompile(`(\d+(?:\.\d+)?)%(\s|\)|[-+*/%]|$)`)

// Calc evaluates an arithmetic expression. The grammar is HCL's native
// arithmetic: + - * / %, parentheses, unary minus and decimal numbers, with
// the usual precedence. "50%" on its own means 0.5.
func Calc(expr string) (float64, error) {
	src := percentLiteral.ReplaceAllString(expr, "($1/100)$2")

	parsed, diags := hclsyntax.ParseExpression([]byte(src), "calc", hcl.InitialPos)
	if diags.HasErrors() {
		return 0, fmt.Errorf("parse %q: %w", expr, diags)
	}
	if vars := parsed.Variables(); len(vars) > 0 {
		return 0, fmt.Errorf("parse %q: variables are not supported", expr)
	}

	val, diags := parsed.Value(nil)
	if diags.HasErrors() {
		return 0, fmt.Errorf("evaluate %q: %w", expr, diags)
	}
	if !val.IsKnown() || val.IsNull() || val.Type() != cty.Number {
		return 0, fmt.Errorf("evaluate %q: result is not a number", expr)
	}

	f, _ := val.AsBigFloat().Float64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("evaluate %q: result is not finite", expr)
	}
	return f, nil
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
