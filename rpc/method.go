package rpc

import (
	"strings"
)

// ServiceName returns the fully qualified service of a method name in the
// form "/package.Service/Method". It returns "" if method is malformed.
func ServiceName(method string) string {
	service, _, ok := splitMethod(method)
	if !ok {
		return ""
	}
	return service
}

// MethodName returns the bare method of a method name in the form
// "/package.Service/Method". It returns "" if method is malformed.
func MethodName(method string) string {
	_, name, ok := splitMethod(method)
	if !ok {
		return ""
	}
	return name
}

func splitMethod(method string) (service, name string, ok bool) {
	method, ok = strings.CutPrefix(method, "/")
	if !ok {
		return "", "", false
	}
	i := strings.LastIndexByte(method, '/')
	if i <= 0 || i == len(method)-1 {
		return "", "", false
	}
	return method[:i], method[i+1:], true
}
