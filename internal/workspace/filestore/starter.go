package filestore

import "github.com/bizconsole/console-backend/internal/workspace/domain"

const starterPackageJSON = `{
  "name": "web-project",
  "private": true,
  "version": "0.1.0",
  "scripts": {
    "dev": "next dev",
    "build": "next build",
    "start": "next start"
  },
  "dependencies": {
    "next": "14.2.5",
    "react": "18.3.1",
    "react-dom": "18.3.1"
  }
}
`

const starterLayout = `import "./globals.css";

export const metadata = {
  title: "My Site",
  description: "Built with the web builder",
};

export default function RootLayout({ children }: { children: React.ReactNode }) {
  return (
    <html lang="en">
      <body>{children}</body>
    </html>
  );
}
`

const starterPage = `export default function Home() {
  return (
    <main className="container">
      <h1>Welcome</h1>
      <p>Describe what you want to build and the assistant will get started.</p>
    </main>
  );
}
`

const starterCSS = `:root {
  color-scheme: light;
  font-family: system-ui, sans-serif;
}

.container {
  max-width: 960px;
  margin: 0 auto;
  padding: 4rem 1.5rem;
}
`

// StarterFiles returns the minimal file set every project must contain.
func StarterFiles() domain.FileMap {
	return domain.FileMap{
		"package.json":        starterPackageJSON,
		"src/app/layout.tsx":  starterLayout,
		"src/app/page.tsx":    starterPage,
		"src/app/globals.css": starterCSS,
	}
}

// IsStarterOnly reports whether files is exactly the untouched starter set.
func IsStarterOnly(files domain.FileMap) bool {
	return files.Equal(StarterFiles())
}

// missingMandatory returns the starter files absent from files.
func missingMandatory(files domain.FileMap) domain.FileMap {
	out := domain.FileMap{}
	for p, content := range StarterFiles() {
		if _, ok := files[p]; !ok {
			out[p] = content
		}
	}
	return out
}
