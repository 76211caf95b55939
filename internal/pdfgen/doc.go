package pdfgen

// Package pdfgen renders road maps as printable one-page-or-more PDF charts:
// a title header with optional band logo, then the section grid with bars,
// feel, and performance notes. Output uses PDF core fonts, so text is
// transliterated to cp1252 on the way in.
