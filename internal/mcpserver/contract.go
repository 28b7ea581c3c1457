package mcpserver

// DeckFormatContract describes the canonical Markdown deck format that
// LLM consumers should follow when creating or updating decks.
const DeckFormatContract = `# Ansuz Deck Format Contract

Every flashcard deck stored in Ansuz MUST follow this structure.

## Structure

` + "```" + `markdown
---
title: Human-readable deck title    # OPTIONAL – defaults to the filename stem
tags:                                # OPTIONAL – YAML list; applied to every card
  - tag-one
  - tag-two
---

## Front of the first card

Back of the first card, in standard Markdown.

## Front of the second card

Back of the second card. #extra-tag
` + "```" + `

## Rules

1. **One deck per file.** The deck name is the filename stem (no ` + "`" + `.md` + "`" + ` extension).
2. **Each ` + "`" + `## ` + "`" + ` heading starts a card.** The heading text is the card front;
   everything until the next heading is the card back.
3. **Fronts and backs are Markdown.** They are rendered to HTML on export, so
   lists, bold, code blocks and inline images all work.
4. **Tags** are lowercase, kebab-case. Deck-level tags come from the
   frontmatter; per-card tags are ` + "`" + `#hashtag` + "`" + ` tokens anywhere in the card back.
5. **Media** is referenced with standard Markdown images or raw ` + "`" + `<img>` + "`" + `,
   ` + "`" + `<audio>` + "`" + ` and ` + "`" + `<video>` + "`" + ` elements. Inline ` + "`" + `data:` + "`" + ` URIs are extracted into
   the Anki package automatically on export.
6. **Upload assets** via the ` + "`" + `upload_asset` + "`" + ` tool. It returns a ` + "`" + `markdownImage` + "`" + `
   field ready to paste into a card back. Assets live in the shared ` + "`" + `assets/` + "`" + `
   directory (flat, no sub-folders); reference them as ` + "`" + `![alt](/assets/file.png)` + "`" + `.
7. **Encoding** is UTF-8 with a trailing newline.

## Example

` + "```" + `markdown
---
title: Cell Biology
tags:
  - biology
---

## What is the powerhouse of the cell?

The **mitochondrion**. #organelles

## Label the organelles

![Cell diagram](/assets/cell-diagram.png)

1. Nucleus
2. Ribosome
3. Golgi apparatus
` + "```" + `
`
