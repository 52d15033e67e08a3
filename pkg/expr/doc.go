// Package expr provides CEL (Common Expression Language) environments for
// evaluating trigger predicates against a resolved attribute set.
//
// Every detectable and input attribute is declared as a variable: a string
// for single-select attributes and a list<string> for multi-select ones.
// Guideline and system attributes are not declared, so predicates that
// reference them fail to compile.
//
// In addition to the standard library and the strings, lists and sets
// extensions, the environment provides:
//   - present(value): true unless the value is empty or "none"
//   - rank(attribute, value): the ordinal rank of value, or -1
//   - atLeast(attribute, value, threshold): rank(value) >= rank(threshold)
package expr
