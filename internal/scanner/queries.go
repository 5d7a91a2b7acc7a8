package scanner

// Per-language tree-sitter capture queries. Every pattern captures the
// declaration node as @def and its name as @name; the scanner derives the
// symbol kind from the @def node's grammar kind.
var Queries = map[string]string{
	"go": `
		(function_declaration name: (identifier) @name) @def
		(method_declaration name: (field_identifier) @name) @def
		(type_declaration (type_spec name: (type_identifier) @name)) @def
		(var_declaration (var_spec name: (identifier) @name)) @def
		(const_declaration (const_spec name: (identifier) @name)) @def
	`,
	"python": `
		(function_definition name: (identifier) @name) @def
		(class_definition name: (identifier) @name) @def
		(module (expression_statement (assignment left: (identifier) @name) @def))
	`,
	"javascript": `
		(function_declaration name: (identifier) @name) @def
		(class_declaration name: (identifier) @name) @def
		(method_definition name: (property_identifier) @name) @def
		(variable_declarator name: (identifier) @name) @def
	`,
	"typescript": `
		(function_declaration name: (identifier) @name) @def
		(class_declaration name: (type_identifier) @name) @def
		(method_definition name: (property_identifier) @name) @def
		(interface_declaration name: (type_identifier) @name) @def
		(type_alias_declaration name: (type_identifier) @name) @def
		(variable_declarator name: (identifier) @name) @def
	`,
}
