// Package mock provides function-field mocks of the domain interfaces
// for use in tests.
package mock
