package decl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleUnit = `
name: main
capabilities:
  - name: Eq
    params: [A]
    members:
      - name: equals
        arity: 2
      - name: notEquals
        arity: 2
        default:
          member: equals
          args:
            - arg: 0
            - arg: 1
witnesses:
  - name: EqInt
    implements:
      capability: Eq
      args:
        - name: int
    members:
      equals: eq_int_equals
    line: 12
  - name: ArrayEq
    params:
      - name: A
        requires:
          - capability: Eq
            args:
              - var: A
    implements:
      capability: Eq
      args:
        - name: Array
          args:
            - var: A
    members:
      equals: array_eq_equals
requests:
  - capability: Eq
    args:
      - name: Array
        args:
          - name: int
    visible: [ArrayEq, EqInt]
    line: 40
`

func TestLoadUnit(t *testing.T) {
	unit, err := Load(strings.NewReader(sampleUnit))
	require.NoError(t, err)

	assert.Equal(t, "main", unit.Name)
	require.Len(t, unit.Capabilities, 1)
	require.Len(t, unit.Witnesses, 2)
	require.Len(t, unit.Requests, 1)

	eq := unit.Capabilities[0]
	assert.Equal(t, []string{"A"}, eq.Params)
	require.Len(t, eq.Members, 2)
	assert.Nil(t, eq.Members[0].Default)
	require.NotNil(t, eq.Members[1].Default)
	assert.Equal(t, "equals", eq.Members[1].Default.Member)
	require.Len(t, eq.Members[1].Default.Args, 2)
	require.NotNil(t, eq.Members[1].Default.Args[0].Arg)
	assert.Equal(t, 0, *eq.Members[1].Default.Args[0].Arg)

	eqInt := unit.Witnesses[0]
	assert.Equal(t, "EqInt", eqInt.Name)
	assert.Equal(t, 12, eqInt.Line)
	assert.Equal(t, "eq_int_equals", eqInt.Members["equals"])

	arrayEq := unit.Witnesses[1]
	require.Len(t, arrayEq.Params, 1)
	require.Len(t, arrayEq.Params[0].Requires, 1)
	assert.Equal(t, "Eq", arrayEq.Params[0].Requires[0].Capability)

	req := unit.Requests[0]
	assert.Equal(t, []string{"ArrayEq", "EqInt"}, req.Visible)
	assert.Equal(t, "Array<int>", req.Args[0].ToIR().String())
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	_, err := Load(strings.NewReader("name: main\nbogus: true\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding normalized unit")
}

func TestTypeToIR(t *testing.T) {
	testCases := []struct {
		name     string
		input    Type
		expected string
	}{
		{name: "named", input: Type{Name: "int"}, expected: "int"},
		{name: "var", input: Type{Var: "A"}, expected: "A"},
		{
			name:     "applied",
			input:    Type{Name: "Map", Args: []Type{{Name: "string"}, {Var: "V"}}},
			expected: "Map<string, V>",
		},
		{name: "ref", input: Type{Name: "int", Ref: true}, expected: "ref int"},
		{
			name:     "ref of applied",
			input:    Type{Name: "Array", Args: []Type{{Name: "int"}}, Ref: true},
			expected: "ref Array<int>",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.input.ToIR().String())
		})
	}
}
