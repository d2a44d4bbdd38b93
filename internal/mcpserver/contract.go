package mcpserver

// NoteFormatContract describes the Markdown accepted by create_note.
const NoteFormatContract = `# Notely Note Format Contract

A note is created from one Markdown document.

## Structure

` + "```" + `markdown
---
title: Human-readable title        # REQUIRED unless the body starts with a # heading
tags:                               # OPTIONAL – YAML list (or "a, b" string)
  - tag-one
  - tag-two
---

Body text in standard Markdown. Inline #tags are added to the tag list.
` + "```" + `

## Rules

1. **Frontmatter is optional.** When present, the ` + "`" + `---` + "`" + ` fences must open the document.
   Invalid YAML is kept as plain body text.
2. **Title** comes from the ` + "`" + `title` + "`" + ` argument, else frontmatter ` + "`" + `title` + "`" + `,
   else the first ` + "`" + `# ` + "`" + ` heading. A note without a title is rejected.
3. **Tags** come from the ` + "`" + `tags` + "`" + ` argument, else frontmatter ` + "`" + `tags` + "`" + ` followed by
   inline ` + "`" + `#tags` + "`" + ` of the body (code blocks are ignored). Duplicates are dropped.
4. **Content** is the body without frontmatter. It must not be empty.
5. **Summary** is generated automatically for content longer than 200 characters
   when a generator is configured.
6. **Encoding** is UTF-8; titles, tags and bodies may use any language.
7. **Files.** ` + "`" + `notely import` + "`" + ` reads the same format from ` + "`" + `.md` + "`" + ` files, using the
   file name as title when none is given. ` + "`" + `notely export` + "`" + ` writes it back with ` + "`" + `id` + "`" + `,
   ` + "`" + `created` + "`" + ` and ` + "`" + `updated` + "`" + ` added to the frontmatter.

## Example

` + "```" + `markdown
---
title: Weekly standup 2025-01-20
tags:
  - meeting-notes
  - project-x
---

Attendees: Alice, Bob.

## Action items

- Alice to review the design doc #review
- Bob to update the roadmap
` + "```" + `
`
