package generation

import "gotsd/internal/metadata"

const returnValueField = "returnValue"

// synthesizeOutType builds the record type returned in place of a method's
// output parameters: one field per output parameter plus returnValue for a
// non-void return. It returns nil when the method has no output parameters.
// The record is generic over the owner's parameters followed by the method's.
// The type is named after the owner and the mapped method name and is never
// registered with the collection; one is made per method occurrence.
func synthesizeOutType(owner *metadata.TypeDecl, mappedName string, method *metadata.Method) *metadata.TypeDecl {
	var outs []metadata.Parameter
	for _, param := range method.Params {
		if param.Out {
			outs = append(outs, param)
		}
	}
	if len(outs) == 0 {
		return nil
	}

	decl := &metadata.TypeDecl{
		Namespace:  owner.Namespace,
		Name:       TypeName(owner.Name) + "_" + mappedName + "_Out",
		Kind:       metadata.KindSynthesized,
		Visibility: metadata.Public,
	}
	seen := make(map[string]bool)
	for _, param := range append(append([]metadata.GenericParam(nil), owner.GenericParams...), method.GenericParams...) {
		if seen[param.Name] {
			continue
		}
		seen[param.Name] = true
		decl.GenericParams = append(decl.GenericParams, metadata.GenericParam{Name: param.Name})
	}
	for _, param := range outs {
		decl.Fields = append(decl.Fields, &metadata.Field{Name: param.Name, Type: param.Type, Public: true})
	}
	if !isVoid(method.ReturnType) {
		decl.Fields = append(decl.Fields, &metadata.Field{Name: returnValueField, Type: method.ReturnType, Public: true})
	}
	decl.DeclaringType = owner.DeclaringType
	return decl
}

// inParams drops output parameters from a parameter list.
func inParams(params []metadata.Parameter) []metadata.Parameter {
	filtered := make([]metadata.Parameter, 0, len(params))
	for _, param := range params {
		if !param.Out {
			filtered = append(filtered, param)
		}
	}
	return filtered
}
