package generation

import (
	"strings"

	"gotsd/internal/metadata"
)

// Placeholder for the capability's type argument in bank templates.
const typeArgPlaceholder = "$T"

type injectionPoint int

const (
	// injected into the method set, so it is deduplicated with declared methods
	intoMethods injectionPoint = iota
	// appended after events, preceded by a blank line and the bank's comment
	afterEvents
)

// capability adds a fixed member bank to every type whose own name, or the
// name of one of its interfaces (direct or inherited), starts with one of
// prefixes. An exact capability matches only the type's own full name.
type capability struct {
	prefixes   []string
	exact      bool
	defaultArg string
	point      injectionPoint
	comment    string
	lines      []string
	// lengthLine is appended when no member named length was emitted.
	lengthLine string
}

const promiseType = "Tsd.WinRT.IPromise<U>"

var capabilities = []capability{
	{
		prefixes: []string{
			"Windows.Foundation.IAsyncOperation`1",
			"Windows.Foundation.IAsyncOperationWithProgress`2",
		},
		defaultArg: "TResult",
		point:      afterEvents,
		comment:    "// Promise Extension",
		lines: []string{
			"then<U>(success?: (value: $T) => " + promiseType + ", error?: (error: any) => " + promiseType + ", progress?: (progress: any) => void): " + promiseType + ";",
			"then<U>(success?: (value: $T) => " + promiseType + ", error?: (error: any) => U, progress?: (progress: any) => void): " + promiseType + ";",
			"then<U>(success?: (value: $T) => U, error?: (error: any) => " + promiseType + ", progress?: (progress: any) => void): " + promiseType + ";",
			"then<U>(success?: (value: $T) => U, error?: (error: any) => U, progress?: (progress: any) => void): " + promiseType + ";",
			"done<U>(success?: (value: $T) => any, error?: (error: any) => any, progress?: (progress: any) => void): void;",
		},
	},
	{
		prefixes: []string{
			"Windows.Foundation.Collections.IVector`1",
			"Windows.Foundation.Collections.IVectorView`1",
		},
		defaultArg: "T",
		point:      afterEvents,
		comment:    "// Array.prototype extensions",
		lines: []string{
			"toString(): string;",
			"toLocaleString(): string;",
			"concat(...items: $T[][]): $T[];",
			"join(separator: string): string;",
			"pop(): $T;",
			"push(...items: $T[]): void;",
			"reverse(): $T[];",
			"shift(): $T;",
			"slice(start: number): $T[];",
			"slice(start: number, end: number): $T[];",
			"sort(): $T[];",
			"sort(compareFn: (a: $T, b: $T) => number): $T[];",
			"splice(start: number): $T[];",
			"splice(start: number, deleteCount: number, ...items: $T[]): $T[];",
			"unshift(...items: $T[]): number;",
			"lastIndexOf(searchElement: $T): number;",
			"lastIndexOf(searchElement: $T, fromIndex: number): number;",
			"every(callbackfn: (value: $T, index: number, array: $T[]) => boolean): boolean;",
			"every(callbackfn: (value: $T, index: number, array: $T[]) => boolean, thisArg: any): boolean;",
			"some(callbackfn: (value: $T, index: number, array: $T[]) => boolean): boolean;",
			"some(callbackfn: (value: $T, index: number, array: $T[]) => boolean, thisArg: any): boolean;",
			"forEach(callbackfn: (value: $T, index: number, array: $T[]) => void): void;",
			"forEach(callbackfn: (value: $T, index: number, array: $T[]) => void, thisArg: any): void;",
			"map(callbackfn: (value: $T, index: number, array: $T[]) => any): any[];",
			"map(callbackfn: (value: $T, index: number, array: $T[]) => any, thisArg: any): any[];",
			"filter(callbackfn: (value: $T, index: number, array: $T[]) => boolean): $T[];",
			"filter(callbackfn: (value: $T, index: number, array: $T[]) => boolean, thisArg: any): $T[];",
			"reduce(callbackfn: (previousValue: any, currentValue: any, currentIndex: number, array: $T[]) => any): any;",
			"reduce(callbackfn: (previousValue: any, currentValue: any, currentIndex: number, array: $T[]) => any, initialValue: any): any;",
			"reduceRight(callbackfn: (previousValue: any, currentValue: any, currentIndex: number, array: $T[]) => any): any;",
			"reduceRight(callbackfn: (previousValue: any, currentValue: any, currentIndex: number, array: $T[]) => any, initialValue: any): any;",
		},
		lengthLine: "length: number;",
	},
	{
		// the socket interface hides close() behind IClosable in metadata
		prefixes: []string{"Windows.Networking.Sockets.IWebSocket"},
		exact:    true,
		point:    intoMethods,
		lines:    []string{"close(): void;"},
	},
}

// match reports whether the capability applies to t and the type argument its
// bank should be rendered with. The type's own name is checked first, then its
// direct interfaces, then the interfaces those inherit.
func (c capability) match(t *metadata.TypeDecl, mapper *Mapper) (string, bool) {
	if c.matches(t.FullName()) {
		if len(t.GenericParams) > 0 {
			return t.GenericParams[0].Name, true
		}
		return c.defaultArg, true
	}
	if c.exact {
		return "", false
	}
	return c.matchInterfaces(t.Interfaces, mapper, map[string]bool{t.FullName(): true})
}

func (c capability) matchInterfaces(interfaces []metadata.TypeRef, mapper *Mapper, visited map[string]bool) (string, bool) {
	for _, iface := range interfaces {
		if !c.matches(iface.Name) {
			continue
		}
		if len(iface.Args) > 0 {
			return mapper.MapTypeRef(iface.Args[0]), true
		}
		return c.defaultArg, true
	}
	for _, iface := range interfaces {
		if visited[iface.Name] {
			continue
		}
		visited[iface.Name] = true
		decl := mapper.Lookup(iface.Name)
		if decl == nil {
			continue
		}
		inherited := make([]metadata.TypeRef, len(decl.Interfaces))
		for i, parent := range decl.Interfaces {
			inherited[i] = bindGenericArgs(parent, decl.GenericParams, iface.Args)
		}
		if arg, found := c.matchInterfaces(inherited, mapper, visited); found {
			return arg, true
		}
	}
	return "", false
}

// bindGenericArgs replaces the generic parameters of a declaration inside ref
// with the arguments it was instantiated with.
func bindGenericArgs(ref metadata.TypeRef, params []metadata.GenericParam, args []metadata.TypeRef) metadata.TypeRef {
	if ref.IsGenericParam {
		for i, param := range params {
			if param.Name == ref.Name && i < len(args) {
				bound := args[i]
				bound.ArrayRank += ref.ArrayRank
				return bound
			}
		}
		return ref
	}
	if len(ref.Args) == 0 {
		return ref
	}
	bound := ref
	bound.Args = make([]metadata.TypeRef, len(ref.Args))
	for i, arg := range ref.Args {
		bound.Args[i] = bindGenericArgs(arg, params, args)
	}
	return bound
}

func (c capability) matches(name string) bool {
	for _, prefix := range c.prefixes {
		if name == prefix || !c.exact && strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func (c capability) render(indent, arg string) []string {
	replacer := strings.NewReplacer(typeArgPlaceholder, arg)
	lines := make([]string, len(c.lines))
	for i, line := range c.lines {
		lines[i] = indent + replacer.Replace(line)
	}
	return lines
}

// injectMethods adds the method-set capabilities of t to lines.
func injectMethods(t *metadata.TypeDecl, ctx *renderContext, lines *lineSet) {
	for _, c := range capabilities {
		if c.point != intoMethods {
			continue
		}
		if arg, found := c.match(t, ctx.mapper); found {
			for _, line := range c.render(ctx.memberIndent(), arg) {
				lines.Add(line)
			}
		}
	}
}

// writeExtensions appends the member banks that follow the events.
func writeExtensions(sb *strings.Builder, t *metadata.TypeDecl, ctx *renderContext, emitted map[string]bool) {
	indent := ctx.memberIndent()
	for _, c := range capabilities {
		if c.point != afterEvents {
			continue
		}
		arg, found := c.match(t, ctx.mapper)
		if !found {
			continue
		}
		sb.WriteString("\n")
		sb.WriteString(indent + c.comment + "\n")
		for _, line := range c.render(indent, arg) {
			sb.WriteString(line + "\n")
		}
		if c.lengthLine != "" && !emitted["length"] {
			sb.WriteString(indent + c.lengthLine + "\n")
		}
	}
}
