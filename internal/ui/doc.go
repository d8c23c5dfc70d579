// Package ui formats command lifecycle events for people reading the console.
package ui
