package service

import "github.com/KaiserRuben/AI-Website-Workshop/internal/code"

// Starting-point templates for new projects, keyed by template id.
// Tailwind and Alpine are injected by the preview shell, so templates
// only carry body content.
var templates = map[string]code.Code{
	"default": {
		HTML: `<div class="container mx-auto px-4 py-8">
    <h1 class="text-4xl font-bold text-center text-gray-800 mb-4">Willkommen auf meiner Website!</h1>
    <p class="text-lg text-center text-gray-600">Hier kannst du deine eigene Website gestalten.</p>
</div>`,
		CSS: "/* Dein eigenes CSS hier */",
		JS:  "// Dein JavaScript Code hier",
	},
	"portfolio": {
		HTML: `<div class="max-w-3xl mx-auto px-4 py-12">
    <h1 class="text-5xl font-bold text-gray-900 mb-2">Mein Portfolio</h1>
    <p class="text-xl text-gray-500 mb-8">Projekte, Ideen und mehr</p>
    <div class="grid gap-6 md:grid-cols-2">
        <div class="rounded-lg bg-white p-6 shadow">Projekt 1</div>
        <div class="rounded-lg bg-white p-6 shadow">Projekt 2</div>
    </div>
</div>`,
		CSS: "/* Dein eigenes CSS hier */",
		JS:  "// Dein JavaScript Code hier",
	},
	"party": {
		HTML: `<div class="min-h-screen flex items-center justify-center" x-data="{zugesagt: false}">
    <div class="text-center">
        <h1 class="text-6xl font-bold text-purple-600 mb-4">Du bist eingeladen! 🎉</h1>
        <p class="text-2xl text-gray-700 mb-8">Samstag, 20 Uhr</p>
        <button @click="zugesagt = true" x-show="!zugesagt" class="bg-purple-600 text-white px-8 py-3 rounded-full text-xl">Ich komme!</button>
        <p x-show="zugesagt" class="text-2xl text-green-600">Super, bis dann! 🥳</p>
    </div>
</div>`,
		CSS: "/* Dein eigenes CSS hier */",
		JS:  "// Dein JavaScript Code hier",
	},
}

// Template returns the starting code for a template id, falling back to
// the default template for unknown ids.
func Template(id string) code.Code {
	if t, ok := templates[id]; ok {
		return t
	}
	return templates["default"]
}
