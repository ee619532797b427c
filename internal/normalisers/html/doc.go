// Package html provides a Normaliser for HTML documents. Scripts, styles and
// markup are removed and block structure is kept as paragraph breaks.
package html
